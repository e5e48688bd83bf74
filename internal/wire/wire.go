// Package wire provides dependency injection for the runvault application.
// It creates singleton services with lazy initialization.
package wire

import (
	"log"
	"os"
	"sync"

	"github.com/example/runvault/internal/adapters/filesystem"
	"github.com/example/runvault/internal/app"
	"github.com/example/runvault/internal/config"
	"github.com/example/runvault/internal/ports/primary"
	"github.com/example/runvault/internal/validation"
)

var (
	runStore     *filesystem.RunStore
	queryService primary.RunQueryService
	verify       primary.VerifyService
	comparator   primary.CompareService
	canary       primary.CanaryService
	validator    *validation.Validator
	once         sync.Once
)

// Store returns the singleton RunStore instance.
func Store() *filesystem.RunStore {
	once.Do(initServices)
	return runStore
}

// RunQueryService returns the singleton run index read service.
func RunQueryService() primary.RunQueryService {
	once.Do(initServices)
	return queryService
}

// VerifyService returns the singleton replay verifier.
func VerifyService() primary.VerifyService {
	once.Do(initServices)
	return verify
}

// CompareService returns the singleton cross-run comparator.
func CompareService() primary.CompareService {
	once.Do(initServices)
	return comparator
}

// CanaryService returns the singleton drift canary.
func CanaryService() primary.CanaryService {
	once.Do(initServices)
	return canary
}

// Validator returns the singleton artifact document validator.
func Validator() *validation.Validator {
	once.Do(initServices)
	return validator
}

// initServices initializes all services and their dependencies.
// This is called once via sync.Once.
func initServices() {
	cwd, err := os.Getwd()
	if err != nil {
		log.Fatalf("failed to determine working directory: %v", err)
	}
	cfg, err := config.Resolve(cwd)
	if err != nil {
		log.Fatalf("failed to resolve configuration: %v", err)
	}

	runStore, err = filesystem.NewRunStore(cfg.StateRoot, cfg.AllowedRoots...)
	if err != nil {
		log.Fatalf("failed to initialize run store: %v", err)
	}

	validator, err = validation.New()
	if err != nil {
		log.Fatalf("failed to compile artifact schema: %v", err)
	}

	queryService = app.NewIndexService(runStore, nil)
	verify = app.NewVerifyService(runStore)

	compareSvc := app.NewCompareService()
	comparator = compareSvc
	canary = app.NewCanaryService(compareSvc)
}
