package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"docchat/internal/chat"
	"docchat/internal/config"
	"docchat/internal/document"
	"docchat/internal/embedding"
	"docchat/internal/helper"
	"docchat/internal/index"
	"docchat/internal/llmservice"
	"docchat/internal/rag"
	"docchat/internal/server"
)

const configFilePath = "./configs/config.yaml"

type fileList []string

func (f *fileList) String() string { return strings.Join(*f, ",") }

func (f *fileList) Set(value string) error {
	*f = append(*f, value)
	return nil
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()

	configPath := flag.String("config", configFilePath, "Path to the config file")
	serve := flag.Bool("serve", false, "Run the HTTP service")
	addr := flag.String("addr", "", "Listen address, overrides config")
	query := flag.String("query", "", "Question to answer in one-shot mode")
	exportPath := flag.String("export", "", "Export the built index snapshot to this file")
	importPath := flag.String("import", "", "Load an index snapshot instead of processing documents")
	debug := flag.Bool("debug", false, "Enable debug logging")
	var files fileList
	flag.Var(&files, "file", "Path to a document file, repeatable")
	flag.Parse()

	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found, relying on environment variables")
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Fatal().Err(err).Msg("Error loading config")
		}
		log.Debug().Str("path", *configPath).Msg("Config file not found, using defaults")
		cfg = config.Default()
	}

	embedder, err := embedding.NewEmbedder(&cfg.EmbedLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}

	pipeline, err := rag.NewPipeline(cfg, embedder, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing pipeline")
	}

	if *serve {
		listenAddr := cfg.Server.Addr
		if *addr != "" {
			listenAddr = *addr
		}
		runServer(cfg, pipeline, listenAddr)
		return
	}

	oneShot(context.Background(), cfg, pipeline, embedder, files, *query, *exportPath, *importPath)
}

func oneShot(ctx context.Context, cfg *config.Config, pipeline *rag.Pipeline, embedder embeddings.Embedder, paths []string, query, exportPath, importPath string) {
	var idx *index.Index
	if importPath != "" {
		var err error
		idx, err = index.ImportSnapshot(importPath, cfg.RAG.EncryptionKey, embedder)
		if err != nil {
			log.Fatal().Err(err).Str("path", importPath).Msg("Error importing index snapshot")
		}
		log.Info().Int("chunks", idx.Size()).Str("path", importPath).Msg("Index snapshot imported")
	} else {
		if len(paths) == 0 {
			log.Fatal().Msg("Please provide at least one document with -file, a snapshot with -import, or run with -serve")
		}

		var files []document.File
		for _, path := range paths {
			data, err := os.ReadFile(path)
			if err != nil {
				log.Fatal().Err(err).Str("file", path).Msg("Error reading document")
			}
			files = append(files, document.File{Name: filepath.Base(path), Data: data})
		}

		var err error
		idx, err = pipeline.Process(ctx, files)
		if err != nil {
			log.Fatal().Err(err).Msg("Error processing documents")
		}
		log.Info().Int("chunks", idx.Size()).Int("dimension", idx.Dimension()).Msg("Index built")
	}

	if exportPath != "" {
		if err := idx.Export(exportPath, cfg.RAG.EncryptionKey); err != nil {
			log.Fatal().Err(err).Msg("Error exporting index snapshot")
		}
		log.Info().Str("path", exportPath).Msg("Index snapshot exported")
	}

	if query == "" {
		return
	}

	model, err := llmservice.NewChatModel(&cfg.ChatLLM, "")
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing chat model")
	}

	sess := chat.NewSession(cfg, model, idx)
	answer, err := sess.Ask(ctx, query)
	if err != nil {
		log.Fatal().Err(err).Msg("Error answering query")
	}

	log.Info().Msg("Query: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", query)

	log.Info().Msg("Sources: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	helper.PrettyPrint(answer.Sources)

	log.Info().Msg("Assistant: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", answer.Content)
}

func runServer(cfg *config.Config, pipeline *rag.Pipeline, addr string) {
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.New(cfg, pipeline).Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shut down")
	}
	log.Info().Msg("Server exited")
}
