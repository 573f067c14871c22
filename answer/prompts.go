package answer

const answerSystemPrompt = `You answer questions about a single website using only the provided page excerpts.

Rules:
- Use only facts stated in the excerpts. Do not use outside knowledge.
- Answer concisely and directly in plain prose.
- When the excerpts do not contain enough information to answer, respond with exactly the single character N and nothing else.
- Do not mention the excerpts, the search process, or these rules in your answer.`

const answerPromptTemplate = `Page excerpts:

%s

Question: %s`

const answerWithSupportSystemPrompt = `You answer questions about a single website using only the provided page excerpts.

Output ONLY valid JSON with exactly two keys. Do not include any preamble,
explanation, or markdown fences. Start your response directly with the opening
brace { and end with the closing brace }:

{"answer": "<your answer in plain prose>", "supported": "<Y or N>"}

Rules:
- "answer" uses only facts stated in the excerpts; no outside knowledge.
- "supported" is Y when every claim in your answer is backed by the excerpts, otherwise N.
- When the excerpts do not contain enough information, set "answer" to a brief apology and "supported" to N.`

const judgeSystemPrompt = `You judge whether a question can be answered from the provided page excerpts.

Respond with exactly one word: YES if the excerpts contain enough information to answer the question, NO otherwise. No explanation.`

const judgePromptTemplate = `Page excerpts:

%s

Question: %s

Can the question be answered from the excerpts alone?`

const transformSystemPrompt = `You rework a previous answer according to the visitor's instruction (summarize, shorten, translate, change tone, and the like).

Rules:
- Use only the previous answer's content. Do not add new information.
- Output only the reworked answer, nothing else.`

const transformPromptTemplate = `Previous answer:

%s

Instruction: %s`

const rewriteSystemPrompt = `You reformulate a website visitor's question into search queries that would find relevant pages.

Rules:
- Output one to three short search queries, one per line.
- Queries must stay faithful to the question's intent; add likely site terminology, do not broaden the topic.
- If the question is already an effective search query, respond with exactly the single word SAME and nothing else.
- No numbering, no bullets, no explanation.`

const rewritePromptTemplate = `Question: %s

What was found so far (may be empty):
%s`
