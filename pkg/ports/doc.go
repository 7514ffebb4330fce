/*
Package ports defines the driven ports (interfaces) of the FlashSol core.

These interfaces decouple the trade engine and the session manager from the
concrete Redis, SQLite, Solana RPC and routing adapters.

# Key Interfaces

  - KVStore: ephemeral TTL-capable key/value store backing sessions and locks.
  - Locker: per-user mutual exclusion for trades.
  - Router: quote and swap-transaction source (the aggregator).
  - Chain: the Solana RPC surface the engine needs.
  - WalletStore / TradeLog: durable account data.
*/
package ports
