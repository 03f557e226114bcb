package cli

import "github.com/absmach/fedmodel/pkg/sdk"

var (
	DefCoordinatorURL  = "http://localhost:7070"
	DefTLSVerification = false

	defOffset uint64 = 0
	defLimit  uint64 = 10
)

var flsdk sdk.SDK

func SetSDK(s sdk.SDK) {
	flsdk = s
}
