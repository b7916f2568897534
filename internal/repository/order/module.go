package order

import "go.uber.org/fx"

// Module provides the order gateway to Fx.
var Module = fx.Provide(NewGateway)
