// Package types holds the orchestration-side inputs: providers and their zone
// settings, network references, network rules and load balancer members.
// Controller objects live in package nsx/model.
package types
