// Package vehicle reconciles the controller's commands with the vehicle's
// own reported energy state and carries them over the vehicle bus. The bus
// transport is abstracted behind the Bus interface; infra/mqtt provides the
// production adapter.
package vehicle
