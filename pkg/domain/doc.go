/*
Package domain contains the core domain models for the FlashSol trading core.

It defines trade requests and results, the classified failure taxonomy, the
conversational flow records stored in the ephemeral session store, and wallet
records read from the durable account store. This package is kept pure and free
of external dependencies like I/O or persistence, following Hexagonal
Architecture principles.

# Key Entities

  - TradeRequest: What the user asked to trade (direction, mint, amount, slippage).
  - Quote: A perishable priced route returned by the swap-routing service.
  - TradeResult: The outcome of a confirmed trade.
  - TradeError: A classified failure (see Kind).
  - FlowState / PasskeyState: Session records that sequence multi-turn flows.
  - Wallet: The account record consumed read-only by the engine.
*/
package domain
