// Package changelog renders and parses the CHANGELOG document.
//
// Everything in this package is pure string processing: it never talks to
// GitHub. The generator package feeds it releases and commits and decides
// which sections need to be regenerated.
//
// Document layout:
//
//	# CHANGELOG
//
//	## Unreleased
//	...
//
//	## [v1.1.0](https://github.com/o/r/releases/tag/v1.1.0) - 2024-05-01 10:00:00
//
//	<release description>
//
//	### Feature
//
//	- scope:
//	  - subject ([abc1234](https://github.com/o/r/commit/abc1234...)) ([#12](...))
//
//	\* *This CHANGELOG was automatically generated by [auto-generate-changelog](...)*
//
// The title and signature are matched byte-for-byte when an existing
// document is parsed, so they must never change.
package changelog
