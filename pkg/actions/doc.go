// Package actions provides the action registry the dispatch engine resolves
// action specs against, plus a few built-in actions (say, echo, set).
package actions
