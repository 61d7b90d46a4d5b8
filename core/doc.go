// Package core contains the business logic of the digests builder.
// It is free of process concerns: configuration files, caches, HTTP and
// logging all arrive through the interfaces package.
//
// The core package is organized into several sub-packages:
//
// - settings: Loads the TOML feed configuration and resolves per-feed settings
// - snapshot: Persists the last fetched state of each feed in the cache
// - fetch: Conditional fetching with redirect and gone-feed handling
// - transform: Per-feed filtering, rewriting and limiting of entries
// - digest: Collapses entries into interval digests
// - group: Merges member feeds into one synthesized feed
// - batch: Runs the phases in order and writes the artifact
// - domain: Plain data models shared by the phases
// - errors: Typed errors used to classify feed failures
// - interfaces: Contracts for external dependencies (cache, HTTP, parser, logger)
//
// # Usage Example
//
//	import (
//	    "digests-builder/core/batch"
//	    "digests-builder/core/config"
//	    "digests-builder/core/interfaces"
//	)
//
//	deps := interfaces.Dependencies{
//	    Cache:      myCache,      // implements interfaces.Cache
//	    HTTPClient: myHTTPClient, // implements interfaces.HTTPClient
//	    Parser:     myParser,     // implements interfaces.FeedParser
//	    Logger:     myLogger,     // implements interfaces.Logger
//	}
//
//	runner := batch.NewRunner(batch.Options{
//	    FeedsPath:  "feeds.toml",
//	    OutputPath: "digest.json",
//	}, deps, config.NewRunConfig(config.WithWorkers(4)))
//
//	report, err := runner.Run(ctx)
package core
