// Package property stores the properties an account tracks and gates their
// creation on the billing plan limit.
package property
