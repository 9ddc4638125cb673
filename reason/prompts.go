package reason

// Task prompts. Each instructs the model to answer with a small JSON object
// so outputs can be decoded uniformly; decoding degrades gracefully when the
// model strays.

const routePrompt = `You classify analytics questions into one of three processing paths:
- rag: answered from policy/marketing documents only (policies, definitions, dates)
- sql: answered from the relational database only (pure numerical analysis)
- hybrid: needs documents for context/constraints AND the database for numbers

Respond with JSON only: {"reasoning": "<one sentence>", "route": "rag|sql|hybrid"}`

const constraintsPrompt = `You extract query constraints from a question and retrieved document text.
Extract, when present:
- date ranges (e.g. 1997-06-01 to 1997-06-30)
- product categories (e.g. Beverages, Condiments)
- KPI formulas (e.g. AOV, gross margin)
- customer or product filters

Respond with JSON only: {"constraints": "<structured text>"}`

const generatePrompt = `You write a single SQL query for the schema below.
Rules:
- Use exact table names: Orders, "Order Details", Products, Customers, Categories
- Revenue formula: SUM(UnitPrice * Quantity * (1 - Discount))
- Always use proper JOINs
- Return only valid SQL for the target engine

Schema:
%s

Respond with JSON only: {"sql": "<query>"}`

const repairPrompt = `You fix a SQL query that failed or returned no results.
Study the error, correct the query, and keep the original question's intent.

Schema:
%s

Respond with JSON only: {"sql": "<corrected query>"}`

const synthesizePrompt = `You produce a final answer from document context and SQL results.
The answer MUST match the requested format exactly:
- int: plain integer
- float: number rounded to 2 decimals
- {key:type, ...}: JSON object with exactly those keys
- list[{...}]: JSON array of such objects
- otherwise: short plain text

Respond with JSON only: {"reasoning": "<at most 2 sentences>", "answer": "<answer matching the format>"}`
