// Package chatbot answers client-service questions with keyword matching
// over a fixed topic list. Replies interpolate the client's resolved sheet
// record when available and fall back to fixed example figures.
package chatbot

import (
	"fmt"
	"strings"
)

var relevantKeywords = []string{
	"service charge", "service charges", "property", "properties", "lease", "leases", "leaseholder",
	"landlord", "landlords", "managing agent", "managing agents", "residents association",
	"budget", "budget report", "invoice", "invoices", "payment", "payments", "charge",
	"amenities", "concierge", "maintenance", "repair", "repairs", "building", "buildings",
	"location", "wandsworth", "sw18", "property size", "bedroom", "bedrooms",
	"lease term", "payment dates", "year end", "score", "comparison", "trends",
	"documents", "docs", "report", "reports", "document", "pdf", "monthly report",
	"what is", "how much", "when is", "where is", "explain", "tell me about",
	"help", "assistance", "question", "questions",
}

var greetingKeywords = []string{
	"hello", "hi", "hey", "greetings", "good morning", "good afternoon",
	"good evening", "good night", "howdy", "hi there", "hey there",
}

var offTopicKeywords = []string{
	"weather", "cooking", "recipe", "joke", "jokes", "funny", "movie", "movies",
	"sports", "football", "soccer", "basketball", "music", "song", "songs",
	"game", "games", "news", "politics", "election", "trump", "biden",
	"stock", "stocks", "crypto", "bitcoin", "shopping", "buy", "sell",
	"travel", "vacation", "hotel", "restaurant", "food",
}

// DenialMessage is returned for messages outside the supported topics.
const DenialMessage = "I apologize, but I can only assist you with questions related to client services, service charges, property management, lease information, and related topics. Thank you for your understanding."

const greetingReply = "Hello! I'm here to help you,How can I assist you today?"

const fallbackReply = "I can help you with information about your service charge, property details, lease, payments, documents, and property management. Could you please be more specific about what you'd like to know?"

func containsAny(message string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(message, k) {
			return true
		}
	}
	return false
}

// IsGreeting reports whether the message is a greeting.
func IsGreeting(message string) bool {
	return containsAny(strings.TrimSpace(strings.ToLower(message)), greetingKeywords)
}

func isOffTopic(message string) bool {
	return containsAny(strings.ToLower(message), offTopicKeywords)
}

// IsRelevant classifies a message: greetings are always relevant, off-topic
// keywords deny before the relevant list is consulted.
func IsRelevant(message string) bool {
	if IsGreeting(message) {
		return true
	}
	if isOffTopic(message) {
		return false
	}
	return containsAny(strings.ToLower(message), relevantKeywords)
}

func field(record map[string]string, key, fallback string) string {
	if record != nil {
		if v, ok := record[key]; ok && v != "" {
			return v
		}
	}
	return fallback
}

// Respond generates a reply to a relevant message. record is the client's
// resolved sheet row (nil when not resolvable); missing fields fall back to
// example values so the bot can always answer.
func Respond(message string, record map[string]string) string {

	lower := strings.TrimSpace(strings.ToLower(message))

	if IsGreeting(message) {
		return greetingReply
	}

	serviceCharge := field(record, "service_charge", "£2,551")
	propertySize := field(record, "property_size", "710 Sq2")
	bedrooms := field(record, "bedrooms", "2")
	location := field(record, "location", "Wandsworth, SW18 1UZ")
	landlord := field(record, "landlord", "Star Building Ltd.")
	managingAgent := field(record, "managing_agent", "London Building Ltd.")
	leaseTerm := field(record, "lease_term", "90 years remaining")
	score := field(record, "score", "HIGH")

	switch {
	case strings.Contains(lower, "service charge"),
		strings.Contains(lower, "charge") && strings.Contains(lower, "service"):
		return fmt.Sprintf("Your service charge is %s per year, payable in two installments on 1st January and 30th June. The service charge covers maintenance, amenities, and building management services.", serviceCharge)

	case strings.Contains(lower, "property size"),
		strings.Contains(lower, "size") && strings.Contains(lower, "property"),
		strings.Contains(lower, "bedroom"):
		return fmt.Sprintf("Your property is %s with %s bedrooms, located in %s.", propertySize, bedrooms, location)

	case strings.Contains(lower, "lease"):
		return fmt.Sprintf("You are the leaseholder with %s on your lease. The lease term ends on 31st December each year for service charge purposes.", leaseTerm)

	case strings.Contains(lower, "landlord"), strings.Contains(lower, "managing agent"):
		return fmt.Sprintf("Your landlord is %s and the managing agent is %s. You can contact them through the documents section or your account dashboard.", landlord, managingAgent)

	case strings.Contains(lower, "document"), strings.Contains(lower, "doc"),
		strings.Contains(lower, "report"), strings.Contains(lower, "pdf"):
		return "You can find your documents in the 'Docs' section above. Available documents include Budget Report, Monthly Report, and Service Charge Invoice. Click on any document to view or download."

	case strings.Contains(lower, "payment"),
		strings.Contains(lower, "when") && strings.Contains(lower, "due"),
		strings.Contains(lower, "due date"):
		return "Service charge payments are due on 1st January and 30th June each year. The service charge year ends on 31st December."

	case strings.Contains(lower, "location"),
		strings.Contains(lower, "where") && strings.Contains(lower, "property"),
		strings.Contains(lower, "wandsworth"), strings.Contains(lower, "sw18"):
		return fmt.Sprintf("Your property is located in %s. You can view the location on the map above.", location)

	case strings.Contains(lower, "score"), strings.Contains(lower, "rating"),
		strings.Contains(lower, "high") && strings.Contains(lower, "charge"),
		strings.Contains(lower, "low") && strings.Contains(lower, "charge"):
		relation := "lower"
		if score == "HIGH" {
			relation = "higher"
		}
		return fmt.Sprintf("Your service charge score is currently %s compared to similar properties. This means your service charge is %s than average for properties of similar size and location.", score, relation)

	case strings.Contains(lower, "amenities"), strings.Contains(lower, "concierge"),
		strings.Contains(lower, "services") && strings.Contains(lower, "property"):
		return "Your property includes concierge services. The service charge covers maintenance, building management, and all amenities provided by the managing agent."

	case strings.Contains(lower, "help"), strings.Contains(lower, "assist"),
		strings.Contains(lower, "what can"):
		return "I can help you with questions about your service charge, property details, lease information, payment dates, documents, location, and property management. What would you like to know?"
	}

	return fallbackReply
}
