package session

// Key layout of the ephemeral store. Every key is suffixed by the user id.
const (
	flowPrefix          = "bot:flowState:"
	passkeyPrefix       = "bot:passkeyState:"
	lockPrefix          = "bot:processingLocks:"
	portfolioPrefix     = "portfolio_cache:"
	sellPortfolioPrefix = "sell_portfolio_cache:"
	menuPrefix          = "bot:menuMessageId:"
	debouncePrefix      = "bot:debounce:"
	securePrefix        = "passkeyCache:"
)

func FlowKey(userID string) string          { return flowPrefix + userID }
func PasskeyKey(userID string) string       { return passkeyPrefix + userID }
func LockKey(userID string) string          { return lockPrefix + userID }
func PortfolioKey(userID string) string     { return portfolioPrefix + userID }
func SellPortfolioKey(userID string) string { return sellPortfolioPrefix + userID }
func MenuKey(userID string) string          { return menuPrefix + userID }
func SecureSessionKey(userID string) string { return securePrefix + userID }

// DebounceKey is scoped per command so different commands never debounce each other.
func DebounceKey(command, userID string) string {
	return debouncePrefix + command + ":" + userID
}

// SensitivePrefixes are the key families that hold wallet material and are
// encrypted at rest when the store is wrapped with encryption.
var SensitivePrefixes = []string{passkeyPrefix, securePrefix}
