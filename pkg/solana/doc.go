/*
Package solana is a minimal Solana client: base58 keys, the transaction wire
format, a native SOL transfer builder and a JSON-RPC client implementing
ports.Chain.

Transactions produced by the routing service are parsed only far enough to
find the signer slots; the message bytes are signed as received.
*/
package solana
