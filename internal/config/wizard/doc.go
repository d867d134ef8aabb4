// Package wizard provides the interactive stack wizard behind the init
// command.
//
// RunWizard asks a handful of questions with charmbracelet/huh forms and
// returns a Result. BuildConfig turns a Result into a config.Config and
// WriteConfig writes it as stack.yaml with a short header.
package wizard
