package params

var coordinatorConfig = DefaultConfig()

// CoordinatorConfig retrieves the active coordinator config.
func CoordinatorConfig() *Config {
	return coordinatorConfig
}

// OverrideCoordinatorConfig replaces the active config. The preferred
// pattern is to call CoordinatorConfig().Copy(), change the specific
// parameters, and then call OverrideCoordinatorConfig(c). Any subsequent
// calls to params.CoordinatorConfig() will return this new configuration.
func OverrideCoordinatorConfig(c *Config) {
	coordinatorConfig = c
}

// Copy returns a copy of the config object.
func (c *Config) Copy() *Config {
	config := *c
	return &config
}
