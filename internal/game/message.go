package game

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// formatAmount agrupa milhares ("12,500"); frações com duas casas
func formatAmount(d decimal.Decimal) string {
	if d.IsInteger() {
		return printer.Sprintf("%d", d.IntPart())
	}
	return printer.Sprintf("%.2f", d.InexactFloat64())
}

func joinDigits(ds []int) string {
	parts := make([]string, len(ds))
	for i, d := range ds {
		parts[i] = strconv.Itoa(d)
	}
	return strings.Join(parts, ", ")
}

func wonMessage(secret []int, win decimal.Decimal) string {
	return "Congratulations! You won! The numbers were " + joinDigits(secret) +
		". You won ₦" + formatAmount(win) + "."
}

func lostMessage(secret []int) string {
	return "Game Over! The correct numbers were " + joinDigits(secret) + ". Better luck next time!"
}

func feedbackMessage(positions, numbers, remaining int) string {
	return printer.Sprintf("You got %d number(s) in the correct position and %d correct number(s) total. %d attempt(s) remaining.",
		positions, numbers, remaining)
}
