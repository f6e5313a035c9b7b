package admin

// DefaultRegistry returns the planning models of the input and output apps.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(
		Model{App: "input", Name: "plan", VerboseNamePlural: "plan", InAdmin: true},
		Model{App: "input", Name: "buffer", VerboseNamePlural: "buffers", InAdmin: true},
		Model{App: "input", Name: "calendar", VerboseNamePlural: "calendars", InAdmin: true},
		Model{App: "input", Name: "customer", VerboseNamePlural: "customers", InAdmin: true},
		Model{App: "input", Name: "demand", VerboseNamePlural: "demands", InAdmin: true},
		Model{App: "input", Name: "flow", VerboseNamePlural: "flows", InAdmin: true},
		Model{App: "input", Name: "item", VerboseNamePlural: "items", InAdmin: true},
		Model{App: "input", Name: "load", VerboseNamePlural: "loads", InAdmin: true},
		Model{App: "input", Name: "location", VerboseNamePlural: "locations", InAdmin: true},
		Model{App: "input", Name: "operation", VerboseNamePlural: "operations", InAdmin: true},
		Model{App: "input", Name: "resource", VerboseNamePlural: "resources", InAdmin: true},
		Model{App: "input", Name: "dates", VerboseNamePlural: "dates", InAdmin: false},
		Model{App: "output", Name: "operationplan", VerboseNamePlural: "operationplans", InAdmin: true},
		Model{App: "output", Name: "flowplan", VerboseNamePlural: "flowplans", InAdmin: true},
		Model{App: "output", Name: "loadplan", VerboseNamePlural: "loadplans", InAdmin: true},
		Model{App: "output", Name: "problem", VerboseNamePlural: "problems", InAdmin: true},
		Model{App: "output", Name: "demand", VerboseNamePlural: "demand plans", InAdmin: true},
	)
	return r
}
