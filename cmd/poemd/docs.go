package main

// General API documentation for swaggo. Regenerate docs/ with
// `swag init -g cmd/poemd/docs.go -o docs`.
//
// @title           poemd API
// @version         1.0
// @description     HTTP API of a single-model poem generation session.
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
