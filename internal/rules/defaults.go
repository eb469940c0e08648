package rules

// Default returns the built-in rule set.
func Default() *Registry {
	return MustRegistry(
		NewParseError(),
		NewThrowInEffectCode(),
		NewTryCatchInEffect(),
		NewMissingErrorChannel(),
		NewCatchLogAndSwallow(),
		NewSwallowFailuresWithoutLogging(),
		NewGenericErrorType(),
		NewThrowInEffectPipeline(),
		NewThrowInsideEffectLogic(),
		NewNodeFS(),
		NewNodePath(),
		NewRunEffectInsideEffect(),
	)
}
