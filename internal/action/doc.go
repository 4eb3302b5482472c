// Package action runs the external recovery command.
//
// Features:
//   - Fixed binary and arguments from configuration; message payloads never
//     become arguments
//   - Captures stdout/stderr and logs one line per outcome
//   - Classifies failures as LaunchError (could not start) or
//     ExecutionError (started, exited non-zero or was killed)
//   - Optional asynchronous dispatch so a slow command does not stall
//     broker message processing
//   - Optional timeout; shutdown never kills a command already running
//
// Example usage:
//
//	runner := action.NewRunner(action.Config{
//	    Name:   "wb-engine-helper",
//	    Binary: "wb-engine-helper",
//	    Args:   []string{"--start"},
//	    Async:  true,
//	})
//	runner.SetLogger(log)
//
//	runner.Dispatch(ctx, "online")
//	defer runner.Wait(shutdownCtx)
package action
