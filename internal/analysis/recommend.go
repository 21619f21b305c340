package analysis

import "strings"

const FALLBACK_RECOMMENDATION = "Keep moving forward — you are doing better than you think."

var recommendations = map[string]string{
	"happy":        "Celebrate your joy — share your light with others!",
	"sad":          "This too shall pass. Brighter days are ahead.",
	"angry":        "Breathe deeply. Choose calm over chaos.",
	"fear":         "You are stronger than your worries. Face them step by step.",
	"surprise":     "Embrace the unexpected — new paths bring growth.",
	"love":         "Cherish the connections that warm your heart.",
	"joy":          "Let gratitude amplify your happiness.",
	"trust":        "Believe in your journey — you’re on the right path.",
	"anticipation": "Stay hopeful, good things are coming.",
	"disgust":      "Release what doesn’t serve you, and move forward clean.",
	"shame":        "Mistakes don’t define you. Growth does.",
	"guilt":        "Forgive yourself — every day is a new chance.",
	"lonely":       "You’re never truly alone — your story matters.",
	"confused":     "Clarity comes with patience. Trust the process.",
	"overwhelmed":  "Take one step at a time — you’ve got this.",
	"grateful":     "Keep noticing the little blessings around you.",
	"inspired":     "Let this spark move you closer to your dreams.",
	"proud":        "Celebrate your wins, no matter how small.",
	"calm":         "Stay grounded — peace is your strength.",
	"hopeful":      "Hold on — tomorrow carries promise.",
	"hurt":         "Healing takes time, but you are resilient.",
	"anxious":      "Breathe. You’re safe in this moment.",
	"stressed":     "Pause, recharge, and return stronger.",
	"content":      "Enjoy the stillness — happiness lives here.",
	"bored":        "Explore something new — curiosity fuels growth.",
	"determined":   "Keep pushing — your persistence will pay off.",
	"optimistic":   "Your mindset shapes your future. Stay bright.",
	"negative":     "Hardships don’t last — your strength does.",
	"positive":     "Keep shining — you inspire others too.",
	"neutral":      "Every day holds potential. Make it meaningful.",
}

// Recommend looks the emotion up first, then the sentiment. The score does
// not take part in the selection.
func Recommend(sentiment, emotion string, score float64) string {
	if r, ok := recommendations[strings.ToLower(strings.TrimSpace(emotion))]; ok {
		return r
	}
	if r, ok := recommendations[strings.ToLower(strings.TrimSpace(sentiment))]; ok {
		return r
	}
	return FALLBACK_RECOMMENDATION
}
