package planner

const routeSystemPrompt = `You route a website visitor's question before retrieval runs.

Output ONLY valid JSON. Do not include any preamble, explanation, or markdown
fences. Start your response directly with the opening brace { and end with the
closing brace }:

{"route": "<transform_only|retrieve_followup|retrieve_new>", "standalone_query": "<string>", "concepts": ["<string>", ...]}

Routes:
- transform_only: the request only reworks the previous answer (summarize it, shorten it, translate it, change its tone). No new information is needed.
- retrieve_followup: the question continues the previous topic but needs new information from the site. Set standalone_query to a self-contained rephrasing that makes sense without the conversation.
- retrieve_new: the question starts a new topic. Leave standalone_query empty.

Rules:
- concepts lists up to 6 short lowercase phrases naming what a complete answer must cover. Empty list is allowed.
- When there is no conversation memory, the route is always retrieve_new.
- The JSON must parse without errors; no trailing commas, no extra keys, and no extraneous text outside the object.`

const routePromptTemplate = `Conversation memory (may be empty):
%s

Question: %s`

const conceptsSystemPrompt = `You list the concepts a complete answer to a question must cover.

Output ONLY valid JSON. No preamble, no markdown fences:

{"concepts": ["<string>", ...]}

Rules:
- Up to 6 short lowercase phrases, each naming one thing the answer must address.
- Only concepts explicitly mentioned or clearly implied by the question. Do not hallucinate.
- If none can be identified, return "concepts": [].`

const followupSystemPrompt = `Retrieval for a question left some concepts uncovered. You propose focused follow-up searches.

Output ONLY valid JSON. No preamble, no markdown fences:

{"queries": ["<string>", ...], "drop_ids": ["<string>", ...]}

Rules:
- queries: up to 4 short search queries targeting the missing concepts. Empty list when no useful query exists.
- drop_ids: up to 8 ids of listed results that are noise for this question. Only ids that appear in the list. Empty list is allowed.
- The JSON must parse without errors; no trailing commas, no extra keys, and no extraneous text outside the object.`

const followupPromptTemplate = `Question: %s

Missing concepts: %s

Current results:
%s`
