package chat

import "fmt"

const (
	answerPreamble = "Here's what I found in our knowledge base:\n\n"

	collectInfoMessage = "Before I can help, please share your name and email, separated by commas. " +
		"You can add your organization as well, for example: Jane Doe, jane@example.com, Example Press"

	identityFormatMessage = "I couldn't read those details. Please send your name and a valid email " +
		"separated by a comma, for example: Jane Doe, jane@example.com"

	emptyQuestionMessage = "Please enter a question."

	genericErrorMessage = "Sorry, something went wrong while processing your request. Please try again later."
)

func verifiedMessage(name string) string {
	return fmt.Sprintf("Thanks, %s. Your details are verified. What can I help you with today?", name)
}

func alreadyVerifiedMessage(name, email string) string {
	return fmt.Sprintf("You're already verified as %s (%s). Go ahead and ask your question.", name, email)
}

func tooLongMessage(limit int) string {
	return fmt.Sprintf("Your question is too long. Please keep it under %d characters.", limit)
}

func escalationMessage(name, email, organization, caseID string) string {
	return fmt.Sprintf("I couldn't find a confident answer to your question, so I've opened a support case for you.\n\n"+
		"Name: %s\nEmail: %s\nOrganization: %s\nCase ID: %s\n\n"+
		"Our support team will follow up by email.", name, email, organization, caseID)
}
