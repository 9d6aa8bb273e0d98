// Package logger provides adapters for popular logger libraries to work with bwtree's Logger interface.
//
// The adapters allow you to use your existing logger with bwtree without writing boilerplate.
// Note that the standard library's slog.Logger already implements bwtree.Logger directly.
//
// Example with zap:
//
//	import (
//	    "bwtree"
//	    "bwtree/logger"
//	    "go.uber.org/zap"
//	)
//
//	func main() {
//	    zapLogger, _ := zap.NewProduction()
//
//	    idx, err := bwtree.New(bwtree.WithLogger(logger.NewZap(zapLogger)))
//	    if err != nil {
//	        panic(err)
//	    }
//	}
package logger
