// Package config loads and validates the attrcycled configuration.
//
// Values come from built-in defaults, then the YAML file, then ATTRCYCLE_*
// environment variables. Secrets (MQTT and Redis passwords, the InfluxDB
// token) are best supplied through the environment.
//
// Usage:
//
//	cfg, err := config.Load(config.PathFromEnv())
//	if err != nil {
//	    return err
//	}
//	for _, c := range cfg.Cyclers {
//	    fmt.Println(c.ID, c.Values)
//	}
package config
