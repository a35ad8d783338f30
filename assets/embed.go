// Package assets embeds the seed question bank shipped with the bot.
package assets

import "embed"

//go:embed *.csv
var SeedFS embed.FS
