package pdfrenderer

// SetOpenEngine swaps the engine constructor and returns a restore func
func SetOpenEngine(fn func(Config) (Engine, error)) func() {
	prev := openEngine
	openEngine = fn
	return func() { openEngine = prev }
}
