package senders

import (
	"context"
	"fmt"

	"github.com/YGao2005/ucla-class-tracker/lib/models"
	"github.com/bwmarrin/discordgo"
)

// Embed colors per status.
const (
	colorGreen  = 0x00ff00
	colorYellow = 0xffff00
	colorRed    = 0xff0000
	colorGray   = 0x808080
)

type discordSender struct {
	base
	session *discordgo.Session
}

func (d *discordSender) SendEvent(ctx context.Context, recipient string, state *models.ClassState, event models.NotificationEvent) (string, error) {
	channel, err := d.session.UserChannelCreate(recipient)
	if err != nil {
		return "", fmt.Errorf("opening DM with %s: %w", recipient, err)
	}

	msg, err := d.session.ChannelMessageSendEmbed(channel.ID, eventEmbed(state, event))
	if err != nil {
		return "", fmt.Errorf("sending DM to %s: %w", recipient, err)
	}
	return msg.ID, nil
}

func eventEmbed(state *models.ClassState, event models.NotificationEvent) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       embedTitle(state, event),
		Description: event.Description,
		Color:       StatusColor(event.NewStatus),
		Fields:      []*discordgo.MessageEmbedField{},
		Footer:      &discordgo.MessageEmbedFooter{Text: "UCLA Class Tracker"},
	}

	if event.Capacity > 0 {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "Enrollment",
			Value:  fmt.Sprintf("%d/%d", event.Enrolled, event.Capacity),
			Inline: true,
		})
	}
	if event.WaitlistCapacity > 0 {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "Waitlist",
			Value:  fmt.Sprintf("%d/%d", event.WaitlistCount, event.WaitlistCapacity),
			Inline: true,
		})
	}
	if event.NewStatus == models.StatusOpen {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: "Act fast! Enroll before spots fill up."}
	}
	return embed
}

func embedTitle(state *models.ClassState, event models.NotificationEvent) string {
	course := fmt.Sprintf("%s %s", state.Subject, state.CatalogNumber)
	switch event.Kind {
	case models.EventStatusChanged:
		return "🔔 Class Status Change: " + course
	case models.EventSeatsOpened:
		return "🎉 Seats Available: " + course
	case models.EventWaitlistOpened:
		return "⏳ Waitlist Open: " + course
	default:
		return course
	}
}

// StatusColor maps a class status to its embed color. Shared with the bot's
// command replies.
func StatusColor(status models.Status) int {
	switch status {
	case models.StatusOpen:
		return colorGreen
	case models.StatusWaitlisted:
		return colorYellow
	case models.StatusFull:
		return colorRed
	default:
		return colorGray
	}
}
