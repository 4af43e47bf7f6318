// Command chatcli is a terminal chat client for the chat store.
//
//	chatcli register -phone +33600000000 -first Ada -last Lovelace
//	chatcli login -phone +33600000000
//	chatcli chats -filter unread -q ada
//	chatcli open -contact <userId>
//	chatcli send -group <groupId> hello everyone
//	chatcli watch -contact <userId>
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"chat-client/internal/config"
	"chat-client/internal/logger"
)

func usage() {
	fmt.Fprintln(os.Stderr, `usage: chatcli <command> [flags]

commands:
  register   create an account
  login      log in with a phone number
  logout     forget the saved session
  whoami     print the logged-in user
  chats      list discussions (-filter all|unread|favorites|groups|archived, -q search)
  open       print a thread (-contact id | -group id)
  send       send a message (-contact id | -group id) text...
  watch      follow live updates, sending typed lines to -contact/-group
             (a line "/retry" resends the last failed message)
  contacts   list contacts, or add one with -name and -phone
  group      create a group (-name, -members id,id)`)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load(".")
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logger.Init(cfg.LogLevel, cfg.LogJSON)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := newApp(cfg, os.Stdout)
	defer app.close()

	if err := app.run(ctx, os.Args[1], os.Args[2:]); err != nil {
		logger.Debug("command failed", zap.String("command", os.Args[1]), zap.Error(err))
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
