package config

// Default ports per adapter type.
var defaultPorts = map[string]int{
	"clickhouse": 9000,
	"mysql":      3306,
	"postgres":   5432,
}

// ApplyTargetDefaults applies default values to a TargetConfig based on the target type.
func ApplyTargetDefaults(t *TargetConfig) {
	if t == nil {
		return
	}
	if t.Port == 0 {
		t.Port = defaultPorts[t.Type]
	}
	if t.Type == "clickhouse" && t.User == "" {
		t.User = "default"
	}
}
