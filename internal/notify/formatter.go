package notify

import (
	"fmt"
	"time"

	"Newsletter-Bot/internal/status"

	"github.com/bwmarrin/discordgo"
)

const (
	// Color constants for Discord embeds
	ColorSuccess = 0x2ecc71 // Green for delivered newsletters
	ColorFailure = 0xff0000 // Red for failed runs
)

// formatRunEmbed creates a Discord embed describing a newsletter run
func formatRunEmbed(record status.RunRecord) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Timestamp: record.FinishedAt.Format(time.RFC3339),
		Footer: &discordgo.MessageEmbedFooter{
			Text: "Newsletter Bot",
		},
	}

	if record.EmailSent {
		embed.Title = fmt.Sprintf("📬 Newsletter delivered: %s", record.Topic)
		embed.Color = ColorSuccess
	} else {
		embed.Title = fmt.Sprintf("⚠️ Newsletter run failed: %s", record.Topic)
		embed.Color = ColorFailure
	}

	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
		Name:   "Recipient",
		Value:  record.Recipient,
		Inline: true,
	})

	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
		Name:   "Stories",
		Value:  fmt.Sprintf("%d", record.StoryCount),
		Inline: true,
	})

	duration := record.FinishedAt.Sub(record.StartedAt).Round(time.Second)
	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
		Name:   "Duration",
		Value:  duration.String(),
		Inline: true,
	})

	if record.Error != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "Error",
			Value:  record.Error,
			Inline: false,
		})
	}

	return embed
}
