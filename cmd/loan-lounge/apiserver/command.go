package apiserver

import (
	"github.com/spf13/cobra"

	"github.com/bharatpratapsingh0802/loan-lounge-nearby/internal/business"
	"github.com/bharatpratapsingh0802/loan-lounge-nearby/internal/cmdutils"
)

func Cmd(buildInfo string) *cobra.Command {
	return cmdutils.CobraCommand(
		"api-server",
		"Loan Lounge API server",
		"Loan Lounge API server hosts the public HTTP API for auth, verification, routing and lender profiles.",
		buildInfo,
		business.Main,
	)
}
