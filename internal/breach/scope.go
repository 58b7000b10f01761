package breach

// WithCheckEnabled runs fn with the blocking check forced to the given
// state, restoring the previous value afterwards. Restoration is deferred,
// so it holds even when fn panics. Intended for tests that need a check
// state independent of loaded configuration.
func WithCheckEnabled(c *Checker, enabled bool, fn func()) {
	prev := c.cfg.Enabled
	c.cfg.Enabled = enabled
	defer func() { c.cfg.Enabled = prev }()
	fn()
}

// WithSignInCheckEnabled is WithCheckEnabled for the post-sign-in probe.
func WithSignInCheckEnabled(c *Checker, enabled bool, fn func()) {
	prev := c.cfg.CheckOnSignIn
	c.cfg.CheckOnSignIn = enabled
	defer func() { c.cfg.CheckOnSignIn = prev }()
	fn()
}
