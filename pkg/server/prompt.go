package server

const initialSummaryPrompt = `You are a comic-book story consultant. Generate a vivid, engaging story summary (1-3 paragraphs) based on the user's prompt.

Focus on:
- Rich, descriptive language
- Clear narrative flow
- Engaging character and setting details
- Natural pacing and structure

Return ONLY the summary. Do not include explanations or commentary.`

const lightCorrectionPrompt = `Please correct only grammar, sentence flow, and clarity in the following text.
Do not change the meaning, structure, or add/remove content.
Try to retain the length and level of detail of the original summary as much as possible.
Return ONLY the corrected summary. Do not include explanations or commentary.`

// instructionRefinementPrompt takes the user's refinement instruction.
const instructionRefinementPrompt = `Revise the story summary provided by the user according to this instruction: %q.
Be creative as needed while maintaining the core narrative.
Try to retain the length and level of detail of the original summary as much as possible.
Return ONLY the revised summary. Do not include explanations or commentary.`

const extractPrompt = `You are an intelligent assistant designed to extract fictional character data from story summaries.
Given a short story or summary text, identify the main characters and output their structured details as a single JSON object with a root key "characters".

Output Format:
{"characters":[{"name":"Lina Voss","role":"protagonist","appearance":"A young woman...","booru_tags":"silver hair, green eyes, long red coat, mechanical crossbow"}]}

Rules:
- Be concise and vivid.
- Include at least 3 booru-style visual tags per character.
- "booru_tags" is a comma-separated string of short visual descriptors.
- Only include characters that appear in the text.
- Output only the JSON object. No commentary or markdown.`

const tagsPrompt = `You are a visual tag generator.
Given a character appearance description, return a comma-separated list of booru-style visual tags.
Focus especially on physical appearance, facial features, body type, ethnicity, skin color, and gender.
Use short, 2-4 word phrases like: 'curly red hair, black jacket, robotic eye'.
Do not include emotions or abstract traits.
Return ONLY the tags.`

const fixJSONPrompt = `The previous output was not valid JSON. Fix and complete the JSON so it parses, preserving all extracted content. Output only the corrected JSON object with the root key "characters". No commentary or markdown.`
