package main

// General API documentation for swaggo. Run `make swagger-gen` to generate docs.
//
// @title           llamactl API
// @version         1.0
// @description     Control plane for a single llama-server worker with AMD GPU telemetry.
//
// @contact.name   llamactl maintainers
// @contact.url    https://github.com/your-org/llamactl
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
