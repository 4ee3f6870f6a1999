package research

import "github.com/insightai/insight/internal/domain"

// Resolve picks the execution path for a request. Demo is always
// available; router and web3 need their credentials configured.
//
//	requested  router  web3   → resolved
//	demo       any     any    → demo
//	web3       any     yes    → web3
//	web3       yes     no     → router
//	router     yes     any    → router
//	auto       yes     any    → router
//	auto       no      yes    → web3
//	otherwise                 → demo
func Resolve(requested domain.Mode, routerConfigured, web3Configured bool) domain.Mode {
	switch requested {
	case domain.ModeDemo:
		return domain.ModeDemo
	case domain.ModeWeb3:
		if web3Configured {
			return domain.ModeWeb3
		}
		if routerConfigured {
			return domain.ModeRouter
		}
		return domain.ModeDemo
	case domain.ModeRouter:
		if routerConfigured {
			return domain.ModeRouter
		}
		return domain.ModeDemo
	default: // auto or absent
		if routerConfigured {
			return domain.ModeRouter
		}
		if web3Configured {
			return domain.ModeWeb3
		}
		return domain.ModeDemo
	}
}
