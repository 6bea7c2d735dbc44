/*
Package config loads the relay's YAML configuration.

Every key has a default (see Default), so a config file only needs the
values it changes:

	server:
	  addr: ":8080"
	logging:
	  level: debug
	  json: false
	hub:
	  log_capacity: 5000
	websocket:
	  allowed_origins: ["https://dashboard.example.com"]
	commands:
	  rate_per_second: 2
	  burst: 4

Durations use Go syntax ("10s", "1m30s"). Setting commands.rate_per_second
to 0 disables command rate limiting.

Command-line flags on `bandstand serve` override file values.
*/
package config
