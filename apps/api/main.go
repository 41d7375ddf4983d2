package main

import (
	"github.com/smallbiznis/wastebill/internal/app"
	"go.uber.org/fx"
)

func main() {
	fx.New(app.API()).Run()
}
