package main

import (
	"log"

	api "mailsense-backend/cmd/api"
	classifydelivery "mailsense-backend/internal/classify/delivery"
	classifydomain "mailsense-backend/internal/classify/domain"
	classifyRepo "mailsense-backend/internal/classify/repository"
	classifyUsecase "mailsense-backend/internal/classify/usecase"
	emaildelivery "mailsense-backend/internal/email/delivery"
	emaildomain "mailsense-backend/internal/email/domain"
	emailRepo "mailsense-backend/internal/email/repository"
	emailUsecase "mailsense-backend/internal/email/usecase"
	proposaldelivery "mailsense-backend/internal/proposal/delivery"
	proposaldomain "mailsense-backend/internal/proposal/domain"
	proposalRepo "mailsense-backend/internal/proposal/repository"
	proposalUsecase "mailsense-backend/internal/proposal/usecase"
	"mailsense-backend/internal/scheduler"
	"mailsense-backend/pkg/ai"
	"mailsense-backend/pkg/config"
	"mailsense-backend/pkg/database"
	"mailsense-backend/pkg/imap"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.NewPostgresConnection(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Auto-migrate database schemas
	if err := db.AutoMigrate(
		&emaildomain.Email{},
		&emaildomain.SyncCursor{},
		&classifydomain.Classification{},
		&classifydomain.ExtractedLink{},
		&classifydomain.SenderProfile{},
		&proposaldomain.CleanupProposal{},
		&proposaldomain.ProposalItem{},
	); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Initialize repositories (dependency injection)
	emailRepository := emailRepo.NewEmailRepository(db)
	cursorRepository := emailRepo.NewSyncCursorRepository(db)
	classificationRepository := classifyRepo.NewClassificationRepository(db)
	linkRepository := classifyRepo.NewLinkRepository(db)
	senderRepository := classifyRepo.NewSenderRepository(db)
	proposalRepository := proposalRepo.NewProposalRepository(db)
	candidateRepository := proposalRepo.NewCandidateRepository(db)

	// Mailbox provider
	provider := imap.NewClient(cfg)

	// AI oracle, bounded in concurrency and per-call deadline
	oracle := ai.Limit(ai.NewOracle(ai.FactoryConfig{
		Provider:      cfg.AIProvider,
		OllamaBaseURL: cfg.OllamaBaseURL,
		OllamaModel:   cfg.OllamaModel,
		GeminiAPIKey:  cfg.GeminiAPIKey,
	}), cfg.OracleMaxInflight, cfg.OracleTimeout)

	// Usecases
	syncUC := emailUsecase.NewSyncUsecase(provider, emailRepository, cursorRepository, cfg)
	aggregator := classifyUsecase.NewSenderAggregator(senderRepository, classifyUsecase.AggregatorConfig{
		RollingWindow:   cfg.SenderRollingWindow,
		LowRelevance:    cfg.SenderLowRelevance,
		MinEmails:       cfg.SenderMinEmails,
		DisengagedDays:  cfg.SenderDisengagedDays,
		FoldAddressCase: cfg.FoldAddressCase,
	})
	extractor := classifyUsecase.NewLinkExtractor(linkRepository, oracle, cfg.LinkRelevanceFloor)
	processor := classifyUsecase.NewProcessor(emailRepository, classificationRepository, oracle, aggregator, extractor, classifyUsecase.ProcessorConfig{
		BatchSize:   cfg.ClassifyBatchSize,
		MaxAttempts: cfg.ClassifyMaxAttempts,
	})
	pipeline := classifyUsecase.NewPipelineAdapter(linkRepository, cfg.ExtractMinRelevance)
	emailUC := emailUsecase.NewEmailUsecase(emailRepository, provider, aggregator)

	generator := proposalUsecase.NewGenerator(proposalRepository, candidateRepository, senderRepository, linkRepository, proposalUsecase.GeneratorConfig{
		ArchiveAfterDays:    cfg.ArchiveAfterDays,
		ArchiveCategories:   cfg.ArchiveCategories,
		ArchiveFolder:       cfg.ArchiveFolder,
		LowRelevance:        cfg.SenderLowRelevance,
		MinEmails:           cfg.SenderMinEmails,
		DisengagedDays:      cfg.SenderDisengagedDays,
		ExtractMinRelevance: cfg.ExtractMinRelevance,
		OverlapRatio:        cfg.ProposalOverlapRatio,
	})
	executor := proposalUsecase.NewExecutor(proposalRepository, emailRepository, provider, pipeline, cfg.ArchiveFolder, cfg.ExecConcurrency)

	// Background scheduler: sync, classify, queue, propose
	sched := scheduler.New(syncUC, processor, pipeline, generator, cfg.SyncFolders, cfg.SyncInterval)
	sched.Start()

	// HTTP delivery
	defaultFolder := "INBOX"
	if len(cfg.SyncFolders) > 0 {
		defaultFolder = cfg.SyncFolders[0]
	}
	handler := api.NewHandler(
		emaildelivery.NewSyncHandler(syncUC, defaultFolder),
		emaildelivery.NewEmailHandler(emailUC),
		classifydelivery.NewClassifyHandler(processor, pipeline, linkRepository, senderRepository),
		proposaldelivery.NewProposalHandler(generator, executor),
		sched,
	)

	log.Printf("Starting server on port %s", cfg.Port)
	if err := handler.Start(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
