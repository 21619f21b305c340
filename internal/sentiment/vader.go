package sentiment

import (
	"html"
	"math"
	"regexp"
	"strings"

	"github.com/jonreiter/govader"
	"github.com/microcosm-cc/bluemonday"
	"github.com/russross/blackfriday/v2"
	"github.com/spacesedan/moodjournal/internal/models"
)

const VADER_THRESHOLD = 0.20

var (
	analyzer = govader.NewSentimentIntensityAnalyzer()

	linkPattern = regexp.MustCompile(`\[(.*?)\]\((https?:\/\/[^\s\)]+)\)`)
	urlPattern  = regexp.MustCompile(`https?://\S+|www\.\S+`)

	stripTags = bluemonday.StrictPolicy()
)

func RemoveLinks(input string) string {
	input = linkPattern.ReplaceAllString(input, "$1") // Keep only the text
	return urlPattern.ReplaceAllString(input, "")
}

// CleanText drops links and collapses whitespace. Everything else, including
// text that looks like markup such as "<3", is kept as written.
func CleanText(input string) string {
	return strings.Join(strings.Fields(RemoveLinks(input)), " ")
}

// ConvertMarkdownToText flattens markdown journal text into a single line of
// prose with links and formatting removed.
func ConvertMarkdownToText(input string) string {
	renderer := blackfriday.NewHTMLRenderer(blackfriday.HTMLRendererParameters{
		Flags: blackfriday.UseXHTML,
	})
	output := blackfriday.Run([]byte(RemoveLinks(input)),
		blackfriday.WithNoExtensions(),
		blackfriday.WithRenderer(renderer))

	plain := html.UnescapeString(stripTags.Sanitize(string(output)))
	return strings.Join(strings.Fields(plain), " ")
}

func AnalyzeWithVADER(text string) (float64, string) {
	plainText := ConvertMarkdownToText(text)

	sentiment := analyzer.PolarityScores(plainText)
	score := sentiment.Compound

	var label string
	if score >= VADER_THRESHOLD {
		label = models.SENTIMENT_POSITIVE
	} else if score <= -VADER_THRESHOLD {
		label = models.SENTIMENT_NEGATIVE
	} else {
		label = models.SENTIMENT_NEUTRAL
	}

	return score, label
}

// ClassifyWithVADER reports the VADER label with |compound| as its confidence.
func ClassifyWithVADER(text string) models.ClassificationResult {
	score, label := AnalyzeWithVADER(text)
	return models.ClassificationResult{
		Label: label,
		Score: math.Abs(score),
	}
}
