package discord

import (
	"regexp"
	"strings"

	"github.com/bwmarrin/discordgo"
)

var (
	channelMention = regexp.MustCompile(`^<#(\d+)>$`)
	snowflake      = regexp.MustCompile(`^\d{15,21}$`)
	squareText     = regexp.MustCompile(`^[a-hA-H][1-8]$`)
	// coordinate pairs ("e2e4", "e2 e4", "e7e8q") and SAN ("Nf3", "exd5", "O-O")
	moveText = regexp.MustCompile(`^(?:[a-hA-H][1-8]\s*[a-hA-H][1-8][qrbnQRBN]?|[KQRBN]?[a-h]?[1-8]?x?[a-h][1-8](?:=?[QRBN])?[+#]?|O-O(?:-O)?[+#]?)$`)
)

// splitCommand returns the lowercased command word and the remainder.
func splitCommand(line string) (string, string) {
	fields := strings.SplitN(strings.TrimSpace(line), " ", 2)
	name := strings.ToLower(fields[0])
	if len(fields) == 1 {
		return name, ""
	}
	return name, strings.TrimSpace(fields[1])
}

// parseChannel accepts "<#id>" or a bare id.
func parseChannel(arg string) (string, bool) {
	arg = strings.TrimSpace(arg)
	if sm := channelMention.FindStringSubmatch(arg); sm != nil {
		return sm[1], true
	}
	if snowflake.MatchString(arg) {
		return arg, true
	}
	return "", false
}

func isSquare(s string) bool { return squareText.MatchString(strings.TrimSpace(s)) }

func isMoveText(s string) bool {
	s = strings.TrimSpace(s)
	return s != "" && (isSquare(s) || moveText.MatchString(s))
}

func displayName(u *discordgo.User) string {
	if u == nil {
		return ""
	}
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}
