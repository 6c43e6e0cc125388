package bot

import (
	"fmt"

	"github.com/YGao2005/ucla-class-tracker/lib"
	"github.com/YGao2005/ucla-class-tracker/lib/models"
	"github.com/YGao2005/ucla-class-tracker/senders"
	"github.com/bwmarrin/discordgo"
)

func classEmbed(state *models.ClassState) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("%s %s (%s)", state.Subject, state.CatalogNumber, state.Term),
		Description: fmt.Sprintf("Status: **%s**", state.Status),
		Color:       senders.StatusColor(state.Status),
		Fields:      []*discordgo.MessageEmbedField{},
	}

	if state.Capacity > 0 {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "Enrollment",
			Value:  fmt.Sprintf("%d/%d", state.Enrolled, state.Capacity),
			Inline: true,
		})
	}
	if state.WaitlistCapacity > 0 {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "Waitlist",
			Value:  fmt.Sprintf("%d/%d", state.WaitlistCount, state.WaitlistCapacity),
			Inline: true,
		})
	}
	return embed
}

func overviewEmbed(title string, overviews []lib.ClassOverview) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:  title,
		Fields: []*discordgo.MessageEmbedField{},
	}
	for _, overview := range overviews {
		embed.Fields = append(embed.Fields, overviewField(overview))
	}
	return embed
}

func overviewField(overview lib.ClassOverview) *discordgo.MessageEmbedField {
	subject, course, _ := models.ParseClassKey(overview.ClassKey)
	name := fmt.Sprintf("%s %s", subject, course)

	state := overview.State
	if state == nil {
		return &discordgo.MessageEmbedField{Name: name, Value: "Not checked yet"}
	}

	value := fmt.Sprintf("%s · %d/%d enrolled", state.Status, state.Enrolled, state.Capacity)
	if state.WaitlistCapacity > 0 {
		value += fmt.Sprintf(" · waitlist %d/%d", state.WaitlistCount, state.WaitlistCapacity)
	}
	return &discordgo.MessageEmbedField{Name: name, Value: value}
}
