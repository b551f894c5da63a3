package planning

import "fmt"

func briefPrompt(query string) string {
	return fmt.Sprintf(`Use '%s' as the problem and define the solution by outlining experience highlighting pain points and explaining how your solutions resolve an issue, conflict or problem. Create and output a Project Design Brief with the following sections:

1. Target Market
2. Target Audience
3. Competitors
4. Project Description
5. Technical Requirements
6. Expected Outcome from using the product
7. Estimated number of potential users
8. Estimated number of potential business partners
9. Expected revenue for first year in operation
10. Explanation of monetization strategy

Please format your response as a structured document with clear headings for each section.`, query)
}

func flowchartPrompt(brief string) string {
	return fmt.Sprintf(`Based on the following Project Design Brief, please:

1. Create a Mermaid flowchart describing the basic architecture of the project.
2. Provide recommendations or suggestions on other features or considerations that might be useful.

Project Design Brief:
%s

Please format your response in two sections:
1. Mermaid Flowchart
2. Recommendations and Suggestions

For the Mermaid flowchart, use the following syntax:
`+"```mermaid"+`
graph TD
    A[Start] --> B[Process]
    B --> C[End]
`+"```"+`

Replace the example with an appropriate flowchart for the project.`, brief)
}

func researchPrompt(brief string) string {
	return fmt.Sprintf(`Based on the following Project Design Brief, please:

1. Create a Persona

2. Create a day in the life scenario for the Persona to describe the problem the application will solve highlighting the pain points of the experience.

3. Create a list of 10 questions for a user interview for the persona. Ask these questions to strategically balance both quantitative and qualitative aspects of user research principles.

Project Design Brief:
%s

Please format your response in three sections:
1. Persona
2. Scenario
3. Interview`, brief)
}

func journeyPrompt(brief string) string {
	return fmt.Sprintf(`Based on the following Project Design Brief, create a user journey map using Mermaid diagram syntax. Include the following stages: Awareness, Consideration, Decision, Onboarding, and Retention. For each stage, show the user's actions, thoughts, and emotions.

Project Design Brief:
%s

Please format your response using Mermaid graph syntax within `+"```mermaid```"+` tags.`, brief)
}

func prototypePrompt(brief, research, flowchart string) string {
	return fmt.Sprintf(`Create a basic web dashboard application example with the following technical specifications:

Technical Requirements:
%s

User Research:
%s

Architecture:
%s

Components needed:
1. Data handling and processing
2. User interface
3. Basic error handling
4. Data visualization if applicable
5. Configuration management

Please provide the exact code for a minimal viable product with these three components:

1. A dependency manifest listing only the essential packages
2. Build and installation instructions
3. A main entry point containing a working application

Format the output exactly like this:

#### Setup Instructions
Step-by-step technical setup instructions.

#### Requirements
`+"```"+`
list of required packages
`+"```"+`

#### Implementation
`+"```"+`
main entry point implementation
`+"```"+`

Focus only on the technical implementation. No additional commentary needed.`, brief, research, flowchart)
}
