// Package preflight provides system validation and pre-flight checks
// to ensure searchemu can serve successfully before it starts accepting
// requests.
//
// The package validates:
//   - Disk space availability (minimum 100MB)
//   - Memory availability (minimum 1GB)
//   - Write permissions in the data directory
//   - File descriptor limits (minimum 1024)
//
// Use the Checker type to run all validations:
//
//	checker := preflight.New()
//	results := checker.RunAll(ctx, cfg.DataDirectory)
//	if checker.HasCriticalFailures(results) {
//	    // Handle failures
//	}
package preflight
