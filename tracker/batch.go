package tracker

import "github.com/bwmarrin/discordgo"

const (
	// MaxEmbeds is the number of embeds a message may carry.
	MaxEmbeds = 10
	// MaxEmbedsTotal is the number of characters all embeds of a message may carry.
	MaxEmbedsTotal = 6000
)

// Batch splits embeds into messages, keeping their order. A message is closed
// when the next embed would exceed MaxEmbeds or MaxEmbedsTotal, and the next
// one starts with that embed.
func Batch(embeds []*discordgo.MessageEmbed) [][]*discordgo.MessageEmbed {
	return split(embeds, embedLength)
}

func batchItems(items []renderedPost) [][]renderedPost {
	return split(items, func(rp renderedPost) int { return embedLength(rp.embed) })
}

func split[T any](items []T, size func(T) int) [][]T {
	var (
		batches [][]T
		current []T
		total   int
	)
	for _, it := range items {
		n := size(it)
		if len(current) > 0 && (len(current)+1 > MaxEmbeds || total+n > MaxEmbedsTotal) {
			batches = append(batches, current)
			current, total = nil, 0
		}
		current = append(current, it)
		total += n
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}
