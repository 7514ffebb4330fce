/*
Package flashsol is a custodial Solana swap service for chat front-ends.

A user holds one wallet whose signing secret is sealed at rest. After
proving their passkey they get a secure session during which buys and sells
of SPL tokens run through a swap aggregator without further prompts.

# Architecture

The service is hexagonal. The core packages know nothing about transports:

  - pkg/session keeps per-user ephemeral state (flows, passkey entries,
    caches) and the per-user processing lock in a key-value store with TTLs.
  - pkg/trade executes one trade: lock, quote, build, sign, simulate, send,
    confirm, then charge the optional service fee.
  - pkg/flow is the conversational state machine that turns chat input into
    trade requests.

Adapters plug in around them: Redis or an in-process store for session
state, SQLite for wallets and the trade log, Solana JSON-RPC and the
Jupiter API for the chain and routing, and HTTP, MCP and console
front-ends.

# Usage

New assembles everything from a configuration:

	cfg, err := config.Load("flashsol.yaml")
	if err != nil {
		log.Fatal(err)
	}
	app, err := flashsol.New(cfg, flashsol.WithLogger(logging.New(slog.LevelInfo)))
	if err != nil {
		log.Fatal(err)
	}
	defer app.Close()

	reply := app.Orchestrator.Start(ctx, "user-1", domain.FlowBuy)
	fmt.Println(reply.Text)

# Failure semantics

Trade failures are *domain.TradeError values classified by Kind. A
ConfirmationTimeout never means the trade failed: the transaction may
still land and the error carries its id so the user can check.
*/
package flashsol
