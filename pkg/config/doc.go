// Package config loads busline settings from YAML.
//
// Example file:
//
//	url: wss://broker.example/ws
//	channel: /topic/updates
//	headers:
//	  login: guest
//	  passcode: guest
//	reconnect:
//	  max_attempts: 30
//	  interval: 1s
//	log:
//	  level: info
//	  file: events.blog
//	metrics:
//	  listen: 127.0.0.1:9108
//
// Unknown keys are rejected. Missing values take the defaults of
// messaging.DefaultConfig.
package config
