// Package environment names the deployment environments the scheduler runs in.
//
//	env := environment.Parse(os.Getenv("APP_ENV"))
//	if env.IsDevelopment() {
//	    // in-memory store, email written to disk
//	}
package environment
