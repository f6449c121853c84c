package gate

import (
	"fmt"

	"guru/internal/domain"
)

// NoCreditsMessage is shown when the daily quota is used up.
func NoCreditsMessage(medium string) string {
	switch domain.NormalizeMedium(medium) {
	case domain.MediumEnglish:
		return "⚠️ You have used all of today's questions. Upgrade to the Unlimited plan to keep learning."
	case domain.MediumTamil:
		return "⚠️ இன்றைய கேள்விகள் முடிந்துவிட்டன. தொடர Unlimited Plan ஐப் பெறுங்கள்."
	}
	return "⚠️ අයියෝ පුතේ! ඔයාගේ දවසේ ප්‍රශ්න ප්‍රමාණය ඉවරයි. Unlimited Plan එක අරගන්න."
}

// FailureMessage is the generic reply when the answer provider fails.
func FailureMessage(medium string) string {
	switch domain.NormalizeMedium(medium) {
	case domain.MediumEnglish:
		return "Sorry, something went wrong on our side. Please try again."
	case domain.MediumTamil:
		return "மன்னிக்கவும், தொழில்நுட்ப பிழை. மீண்டும் முயற்சிக்கவும்."
	}
	return "සමාවෙන්න, තාක්ෂණික දෝෂයක්. කරුණාකර නැවත උත්සාහ කරන්න."
}

// LowCreditMessage reminds the user to upgrade before the quota runs out.
func LowCreditMessage(medium string, remaining int) string {
	switch domain.NormalizeMedium(medium) {
	case domain.MediumEnglish:
		return fmt.Sprintf("Only %d questions left today. Upgrade to Genius for unlimited questions.", remaining)
	case domain.MediumTamil:
		return fmt.Sprintf("இன்று %d கேள்விகள் மட்டுமே மீதமுள்ளன.", remaining)
	}
	return fmt.Sprintf("අද තව ප්‍රශ්න %d ක් පමණයි. Genius Plan එකෙන් unlimited ප්‍රශ්න අහන්න.", remaining)
}
