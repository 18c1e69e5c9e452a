// Package environment names the deployment environments the server runs in
// and parses the APP_ENV value into one of them.
//
//	env := environment.Parse(os.Getenv("APP_ENV"))
//	if env.IsProduction() {
//	    // production-only wiring
//	}
package environment
