// Package candy runs external commands and streams their output, one line
// at a time, to a handler that can let the command run to completion or
// stop observing it early with a value of its own.
//
//	task, err := candy.New("rustc --version")
//	if err != nil {
//	    return err
//	}
//	out, err := candy.Run(ctx, task, func(l candy.Log) candy.Behavior[string] {
//	    if l.Stream == candy.Stdout {
//	        return candy.EarlyReturn(l.Line)
//	    }
//	    return candy.Passthrough[string]()
//	})
//
// Stdout and stderr are read concurrently and merged onto a single
// dispatch goroutine, so handlers never need their own locking. Line
// order is preserved within a stream but not across streams.
//
// Returning early stops the handler from seeing further lines; it does
// not stop the process. Run still waits for the process to exit, and a
// non-zero exit is reported as ErrTaskFailure even after an early return.
package candy

// Version is the module version reported by the CLI and MCP server.
const Version = "0.3.0"
