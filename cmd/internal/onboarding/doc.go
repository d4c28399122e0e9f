// Package onboarding validates the login form and drives the four-step
// registration flow locally, before anything is sent to the backend.
//
// Step order:
//  1. account basics (username, email, password, age)
//  2. skin type
//  3. skin concerns
//  4. current products and goals
package onboarding
