// Package config provides configuration parsing for the falk runtime.
//
// The configuration is stored in falk.json. A missing file is not an error;
// every field has a default.
//
// # Configuration File Structure
//
//	{
//	  "url": "http://localhost:8000/",
//	  "websockets": true,
//	  "initialCallbacks": [["#clock", "tick", null, "1s"]],
//	  "tokens": {"root": "..."},
//	  "headers": {"Cookie": "session=..."},
//	  "requestTimeout": "30s",
//	  "dialTimeout": "5s",
//	  "assets": {
//	    "loadScripts": true
//	  },
//	  "metrics": {
//	    "namespace": "falk"
//	  },
//	  "log": {
//	    "level": "info",
//	    "format": "text"
//	  }
//	}
//
// Durations use the falk duration syntax: a number of seconds or a string
// such as "250ms", "2s", "1.5m" or "1h".
//
// # Usage
//
//	cfg, err := config.LoadFromWorkingDir()
//	if err != nil {
//	    return err
//	}
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
package config
