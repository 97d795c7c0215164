package pipeline

const multiQuerySystemFmt = `You are an AI language model assistant. Your task is to generate %d different versions of the given user question to retrieve relevant documents from a vector database. Provide these alternative questions separated by newlines.`

const condenseSystem = `Given a chat history and a follow up question, rephrase the follow up question to be a standalone question.`

const routerSystem = `You are an expert at routing a user's question.
Given the user's question, classify it as either "RAG" or "General".
- Choose "RAG" if the retrieved documents seem relevant to the question.
- Choose "General" if the retrieved documents are not relevant to the question, or if the question is a greeting or general chit-chat.
Return only the single word "RAG" or "General".`

const routerPromptFmt = `Retrieved Documents:
%s

Question: %s
Classification:`

const groundedSystemFmt = `You are an expert AI assistant. Your task is to answer the user's question based ONLY on the provided context.
Read all the context snippets carefully, combine information from them if necessary to answer the user's question, and formulate a single, coherent response.
**IMPORTANT RULE: If the new question is on a completely different topic from the chat history, ignore the chat history and answer the question using only the provided context.**
If the context does not contain the answer, state that you do not have enough information. Do not use any outside knowledge.
Context:
%s`

const generalSystem = `You are a helpful assistant. Answer the following question.`
